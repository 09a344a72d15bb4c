// Package credentials stores the Postgres password outside the config file.
//
// The system keyring is tried first, then the KPREDICT_DB_PASSWORD
// environment variable. The environment store is read-only.
package credentials
