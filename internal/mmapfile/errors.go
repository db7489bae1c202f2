// Copyright (c) 2024 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package mmapfile

import "errors"

var errEmptyFile = errors.New("mmapfile: file is empty")
