package playback

import "errors"

var ErrCorruptState = errors.New("corrupt playback state")
