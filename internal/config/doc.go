// Package config loads and validates the engine configuration.
//
// Configuration is layered: environment variables (prefix ECOM) take
// precedence over an optional config.yaml, which takes precedence over
// struct defaults. The analytics parameters (RFM rule table version,
// composite score weights, risk thresholds, minimum sample sizes) are
// versioned configuration, not code: changing reported segmentations or
// tiers means changing config, never re-deriving rules at call sites.
package config
