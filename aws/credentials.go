// Copyright 2023 Sneller, Inc.
// Copyright 2025 Roman Atachiants
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package aws

import "fmt"

// Credentials holds an access key pair and optional session token.
//
// Credentials never formats its secret through String/GoString, and
// Zero should be called (typically via defer) as soon as the caller is
// done signing requests with it, so the struct no longer references the
// secret. Go strings are immutable, so the memory that backed the
// secret is not overwritten.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// String implements fmt.Stringer without ever printing the secret.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{AccessKeyID: %q, SecretAccessKey: REDACTED}", c.AccessKeyID)
}

// GoString implements fmt.GoStringer for the same reason %#v would
// otherwise print the secret.
func (c Credentials) GoString() string { return c.String() }

// Zero clears the secret key and session token fields. Only a
// temporary copy of their bytes is wiped; the original string memory
// is left as is. Call it once the credentials are no longer needed.
func (c *Credentials) Zero() {
	zeroString(&c.SecretAccessKey)
	zeroString(&c.SessionToken)
}

func zeroString(s *string) {
	if *s == "" {
		return
	}
	b := []byte(*s)
	for i := range b {
		b[i] = 0
	}
	*s = ""
}
