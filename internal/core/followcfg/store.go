// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package followcfg

import "context"

// # Follow Configuration Data Access

// Repository defines the data access contract for the singleton
// configuration row.
type Repository interface {

	/*
		Get retrieves the stored configuration.

		Parameters:
		  - context: context.Context

		Returns:
		  - Config: The stored value, or [Default] when no row exists
		  - error: Database retrieval or decoding failures
	*/
	Get(context context.Context) (Config, error)

	/*
		Save replaces the stored configuration.

		Parameters:
		  - context: context.Context
		  - cfg: Config

		Returns:
		  - error: Database execution failures
	*/
	Save(context context.Context, cfg Config) error
}
