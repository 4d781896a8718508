package exception

import "errors"

var (
	ErrFeedBadPayload = errors.New("feed: malformed payload")
	ErrFeedBadLevel   = errors.New("feed: malformed price level")
)
