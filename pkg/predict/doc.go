// Package predict answers single-game strikeout questions from the stored
// games and the saved per-pitcher models.
//
// A request names a pitcher (matched exactly, then approximately), an
// opponent, the expected innings in the .1/.2 notation and the venue. The
// opponent's strikeout rate is averaged over the pitcher's previous games
// against that team, and the recent K/9 is taken over the last five games.
package predict
