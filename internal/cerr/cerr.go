// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package cerr provides a string type for declaring errors as constants in
// internal packages.
package cerr

type Error string

func (e Error) Error() string {
	return string(e)
}
