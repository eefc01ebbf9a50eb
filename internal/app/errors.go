package app

import "errors"

// ErrNoMetadataSource reports a cache built without a remote source.
var ErrNoMetadataSource = errors.New("metadata source is not configured")
