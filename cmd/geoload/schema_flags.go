package main

import (
	"github.com/spf13/cobra"

	"geoload/internal/config"
)

// schemaFlags are the schema options shared by upload and probe. Only flags
// the user set override the configuration.
type schemaFlags struct {
	geometryColumn string
	srid           int
	featureID      string
	uniqueID       bool
	rawColumn      string
	sample         int
	keepUnknown    bool
}

func (s *schemaFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&s.geometryColumn, "geometry-column", "", "geometry column name (default geometry)")
	fs.IntVar(&s.srid, "srid", 0, "SRID to use instead of the document's CRS")
	fs.StringVar(&s.featureID, "feature-id-column", "", "store the GeoJSON feature id in this column")
	fs.BoolVar(&s.uniqueID, "unique-id", false, "make the feature id column UNIQUE")
	fs.StringVar(&s.rawColumn, "raw-properties-column", "", "store the whole properties object as JSON in this column")
	fs.IntVar(&s.sample, "sample", 0, "infer the schema from the first N features (0 scans the whole file)")
	fs.BoolVar(&s.keepUnknown, "keep-unknown", false, "load features with properties outside the sample (kept in the raw column)")
}

func (s *schemaFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	fs := cmd.Flags()
	if fs.Changed("geometry-column") {
		cfg.Schema.GeometryColumn = s.geometryColumn
	}
	if fs.Changed("srid") {
		cfg.Schema.SRID = s.srid
	}
	if fs.Changed("feature-id-column") {
		cfg.Schema.FeatureIDColumn = s.featureID
	}
	if fs.Changed("unique-id") {
		cfg.Schema.FeatureIDUnique = s.uniqueID
	}
	if fs.Changed("raw-properties-column") {
		cfg.Schema.RawPropertiesColumn = s.rawColumn
	}
	if fs.Changed("sample") {
		cfg.Schema.SampleSize = s.sample
	}
	if fs.Changed("keep-unknown") && s.keepUnknown {
		cfg.Schema.UnknownProperties = "keep_raw"
	}
}
