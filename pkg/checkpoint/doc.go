// Package checkpoint lets an interrupted ingestion run resume.
//
// One JSON file per season lists the player ids whose game logs were fully
// written. A resumed run skips those players. The file is rewritten through
// a temporary file and rename after every completed player, so a crash
// leaves either the previous or the new state on disk.
package checkpoint
