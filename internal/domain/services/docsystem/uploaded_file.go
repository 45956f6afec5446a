package docsystem

import "io"

// UploadedFile is the content of one upload, streamed to the blob store
type UploadedFile struct {
	Filename string
	Content  io.Reader
	Size     int64
}
