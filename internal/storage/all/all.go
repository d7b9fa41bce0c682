// Package all registers every storage backend with the storage registry.
package all

import (
	_ "geoload/internal/storage/mssql"
	_ "geoload/internal/storage/postgres"
	_ "geoload/internal/storage/sqlite"
)
