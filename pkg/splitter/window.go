// Copyright 2025 zhengshuai.xiao@outlook.com
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
package splitter

// window is a fixed-capacity ring holding the bytes currently inside the
// rolling hash. push is the only access path.
type window struct {
	data []byte
	pos  int
}

func newWindow(n int) window {
	return window{data: make([]byte, n)}
}

// push stores b at the cursor and returns the byte it evicts, the one that
// entered the window exactly len(data) pushes ago (0 if the window has not
// refilled since the last reset).
func (w *window) push(b byte) byte {
	old := w.data[w.pos]
	w.data[w.pos] = b
	w.pos++
	if w.pos == len(w.data) {
		w.pos = 0
	}
	return old
}

// reset zeroes the window bytes and rewinds the cursor. The zero bytes are
// deliberate: the window refills with synthetic zeros after every chunk
// boundary, and existing chunked data depends on that exact behavior.
func (w *window) reset() {
	for i := range w.data {
		w.data[i] = 0
	}
	w.pos = 0
}
