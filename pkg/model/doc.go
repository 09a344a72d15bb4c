// Package model trains, stores and evaluates the per-pitcher strikeout models.
//
// Each qualifying pitcher gets a ridge regression over the features package
// vectors, fitted with gonum on a seeded train/test split. The result is
// written as models/<player-slug>.json together with the opponent encoding
// it was trained with and a BLAKE2b-256 checksum. Load refuses artifacts
// whose checksum does not match their content.
package model
