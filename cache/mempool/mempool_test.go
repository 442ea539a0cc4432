/*
 * Copyright 2024 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package mempool

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/frygge/bitalloc/unsafex/bitalloc"
)

func TestMallocFree(t *testing.T) {
	for i := 127; i < 1<<20; i += 1000 { //  it tests malloc 127B - 1MB, with step 1000
		b := Malloc(i)
		Free(b)
	}
}

func TestCap(t *testing.T) {
	sz8k := 8 << 10
	b := Malloc(sz8k)
	require.Greater(t, Cap(b), sz8k)
	Free(b)

	b = Malloc(sz8k - footerLen)
	require.Equal(t, sz8k-footerLen, Cap(b))
	require.Equal(t, sz8k, cap(b))
	Free(b)
}

func TestFree(t *testing.T) {
	minsz := minMemPoolSize

	Free([]byte{})                     // case: cap == 0
	Free(make([]byte, 0, minsz+1))     // case: not power of two
	Free(make([]byte, minsz-1, minsz)) // case: < footerLen

	b := make([]byte, minsz-footerLen, minsz)
	footer := make([]byte, footerLen)

	Free(b) // case: magic err

	*(*uint64)(unsafe.Pointer(&footer[0])) = footerMagic | 1
	_ = append(b, footer...)
	Free(b) // case: index err

	*(*uint64)(unsafe.Pointer(&footer[0])) = footerMagic | 0
	_ = append(b, footer...)
	Free(b) // all good
}

// TestCapBacksBitAllocator exercises the actual reason this module keeps
// mempool around: a pooled buffer, resized to its full Cap, is a valid
// arena for bitalloc.New.
func TestCapBacksBitAllocator(t *testing.T) {
	buf := Malloc(2048)
	defer Free(buf)
	buf = buf[:Cap(buf)]

	a := bitalloc.New(buf)
	require.Greater(t, a.Size(), 0)

	p, err := a.Alloc(10)
	require.NoError(t, err)

	a.Free(p, 10)
	require.Equal(t, 0, a.Usage())
}
