// Copyright 2025 The KubeRocketCI Authors.
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

package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemory(t *testing.T) {
	c := NewMemory()

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("b", 2)
	c.Set("a", 1)
	c.Set("b", 3)

	v, ok := c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
	assert.Equal(t, []string{"a", "b"}, c.Keys())

	c.Delete("b")
	c.Delete("b")
	_, ok = c.Get("b")
	assert.False(t, ok)
	assert.Equal(t, []string{"a"}, c.Keys())
}
