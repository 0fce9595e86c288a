package document

import "errors"

var (
	// ErrNotPDF indicates the fetched resource was not served as a PDF.
	ErrNotPDF = errors.New("resource is not a PDF")

	// ErrNoText indicates the PDF was parsed but yielded no usable text.
	ErrNoText = errors.New("no text extracted from PDF")

	// ErrNoChunks indicates the cleaned text produced no chunks.
	ErrNoChunks = errors.New("no chunks produced from text")
)
