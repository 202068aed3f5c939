package cmd

import "github.com/ardnew/stackcomp/pkg"

var (
	ErrWriteConfig = pkg.NewError("write configuration file")
	ErrFileExists  = pkg.NewError("file exists (use --force to overwrite)")
	ErrWriteOutput = pkg.NewError("write output")
	ErrUsage       = pkg.NewError("invalid usage")
)
