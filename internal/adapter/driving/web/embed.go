package web

import "embed"

// StaticFS holds the embedded app shell assets.
//
//go:embed static/*
var StaticFS embed.FS
