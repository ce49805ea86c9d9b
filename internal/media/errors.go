package media

import "errors"

var (
	// ErrAssetTooLarge indicates the payload exceeds the configured max asset size.
	ErrAssetTooLarge = errors.New("media asset too large")
	// ErrStoreUnavailable indicates the media store is not configured.
	ErrStoreUnavailable = errors.New("media store unavailable")
	// ErrEmptyAsset indicates the fetched or stored payload carried no bytes.
	ErrEmptyAsset = errors.New("media asset is empty")
)
