// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package typeutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	set := NewSet("text", "json")
	set.Insert("json", "console")

	assert.Equal(t, 3, set.Len())
	assert.True(t, set.Contain("text"))
	assert.True(t, set.Contain("text", "console"))
	assert.False(t, set.Contain("text", "xml"))
	assert.True(t, set.Contain())

	assert.ElementsMatch(t, []string{"console", "json", "text"}, set.Collect())
	assert.Equal(t, []string{"console", "json", "text"}, Sorted(set))
}

func TestSortedEmpty(t *testing.T) {
	assert.Empty(t, Sorted(NewSet[int]()))
}
