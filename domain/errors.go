package domain

import "errors"

// ErrStorageUnavailable indicates that the storage engine could not be
// opened or provisioned at all.
var ErrStorageUnavailable = errors.New("storage unavailable")

// ErrStorageRead indicates an engine-level failure while reading records.
var ErrStorageRead = errors.New("storage read failed")

// ErrStorageWrite indicates an engine-level failure while writing a record.
var ErrStorageWrite = errors.New("storage write failed")

// ErrAssetFetch indicates that a required install-time asset could not be
// retrieved, aborting that install attempt.
var ErrAssetFetch = errors.New("asset fetch failed")

// ErrNetworkUnavailable indicates a cache miss that could not be satisfied
// from the network either.
var ErrNetworkUnavailable = errors.New("network unavailable")
