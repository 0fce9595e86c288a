package summary

import "errors"

var ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
