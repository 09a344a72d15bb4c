// Package features turns stored pitcher games into model inputs.
//
// Every model uses the same five features, in Names order: canonical
// innings pitched, the encoded opponent, the home/away flag, the opponent's
// batting strikeout rate and the pitcher's recent K/9 over the last
// DefaultWindow appearances (the current one included).
package features
