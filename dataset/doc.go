// Package dataset moves point sets between Parquet files and point tables.
package dataset
