package interfaces

import "io"

// ProfilePictureStore keeps one picture per username.
type ProfilePictureStore interface {
	Save(username string, r io.Reader, extension string) (string, error)
	Load(username string) ([]byte, error)
}
