// Package config loads runtime configuration for the tessplot CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file selected with -c or --config. Files ending in
//     .yaml or .yml are read as YAML, anything else as JSON.
//  3. Command-line flags, which override earlier values.
//
// # File schema
//
// Durations use timex.Duration, so values can be strings like "30s" or
// integer nanoseconds:
//
//	{
//	  "download_dir": "/epyc/data/tess",
//	  "sectors": [1, 2, 3],
//	  "layout": "auto",
//	  "layout_marker": "epyc",
//	  "quality_bitmask": 175,
//	  "journal_path": "tessplot.db",
//	  "archive": {
//	    "bucket": "stpubdata",
//	    "region": "us-east-1",
//	    "public_base_url": "https://stpubdata.s3.amazonaws.com",
//	    "fetch_timeout": "5m"
//	  },
//	  "log": {"format": "auto", "level": "info"},
//	  "plot": {"width_in": 8, "height_in": 5}
//	}
//
// Keys missing from the file keep their default values.
package config
