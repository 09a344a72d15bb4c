// Package parser extracts rosters, team strikeout rates and pitcher game
// logs from baseball-reference pages.
//
// Tables are located by id. The site ships some tables inside HTML comments
// for lazy rendering, so comments are searched as well. Rows that cannot be
// extracted are logged and skipped; a missing table is an error.
package parser
