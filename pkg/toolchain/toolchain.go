// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package toolchain

import (
	"path/filepath"
	"runtime"

	"gitlab.com/tozd/go/errors"
)

// ErrUnsupportedPlatform is returned for operating systems without a bundled JDK.
var ErrUnsupportedPlatform = errors.Base("unsupported platform")

// JavaHome returns the JDK home inside jdkBase for the given platform.
//
//	linux              -> <base>/linux
//	darwin/amd64       -> <base>/mac/Contents/Home
//	darwin/arm64       -> <base>/mac-arm64/Contents/Home
func JavaHome(jdkBase, goos, goarch string) (string, error) {
	switch goos {
	case "linux":
		return filepath.Join(jdkBase, "linux"), nil
	case "darwin":
		sub := "mac"
		if goarch == "arm64" {
			sub = "mac-arm64"
		}
		return filepath.Join(jdkBase, sub, "Contents", "Home"), nil
	default:
		return "", errors.Errorf("%w: %s/%s", ErrUnsupportedPlatform, goos, goarch)
	}
}

// HostJavaHome is JavaHome for the running platform.
func HostJavaHome(jdkBase string) (string, error) {
	return JavaHome(jdkBase, runtime.GOOS, runtime.GOARCH)
}

// Java returns the java launcher inside a JDK home.
func Java(javaHome string) string {
	return filepath.Join(javaHome, "bin", "java")
}
