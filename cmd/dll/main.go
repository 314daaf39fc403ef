// Package main provides C-compatible exports for the opc library.
// Build with: go build -buildmode=c-shared -o opc.dll
package main

/*
#include <stdlib.h>
#include <stdint.h>

// Result structure for operations that return data
typedef struct {
    char* data;
    int   data_len;
    char* error;
} OpcResult;
*/
import "C"

import (
	"encoding/json"
	"unsafe"

	"github.com/logicossoftware/go-opc"
)

func main() {}

// OpcVersion returns the report schema version of this library.
//
//export OpcVersion
func OpcVersion() C.uint16_t {
	return C.uint16_t(opc.Version)
}

// OpcFreeResult frees memory allocated by other Opc functions.
// Must be called to avoid memory leaks.
//
//export OpcFreeResult
func OpcFreeResult(result C.OpcResult) {
	if result.data != nil {
		C.free(unsafe.Pointer(result.data))
	}
	if result.error != nil {
		C.free(unsafe.Pointer(result.error))
	}
}

func makeResult(data []byte) C.OpcResult {
	var result C.OpcResult
	if len(data) > 0 {
		result.data = (*C.char)(C.CBytes(data))
		result.data_len = C.int(len(data))
	}
	return result
}

func makeError(err error) C.OpcResult {
	var result C.OpcResult
	result.error = C.CString(err.Error())
	return result
}

// OpcInspect parses a package and returns its full export tree as JSON:
// parts, relationships, content type rules, features, properties and
// warnings.
//
// Returns OpcResult with JSON or error. Call OpcFreeResult when done.
//
//export OpcInspect
func OpcInspect(data *C.char, dataLen C.int) C.OpcResult {
	doc, err := opc.Open(C.GoBytes(unsafe.Pointer(data), dataLen))
	if err != nil {
		return makeError(err)
	}
	jsonBytes, err := json.Marshal(doc.Export())
	if err != nil {
		return makeError(err)
	}
	return makeResult(jsonBytes)
}

// OpcGetPart returns the decompressed bytes of the named part.
//
// Returns OpcResult with the part data or error. Call OpcFreeResult when done.
//
//export OpcGetPart
func OpcGetPart(data *C.char, dataLen C.int, partName *C.char) C.OpcResult {
	doc, err := opc.Open(C.GoBytes(unsafe.Pointer(data), dataLen))
	if err != nil {
		return makeError(err)
	}
	name := C.GoString(partName)
	p, ok := doc.Part(name)
	if !ok {
		var result C.OpcResult
		result.error = C.CString("part not found: " + name)
		return result
	}
	b, err := p.Bytes()
	if err != nil {
		return makeError(err)
	}
	return makeResult(b)
}

// OpcHasFeature reports whether a built-in feature such as "macros" is
// present. Returns 1 if present, 0 if absent and -1 if the package
// cannot be parsed.
//
//export OpcHasFeature
func OpcHasFeature(data *C.char, dataLen C.int, feature *C.char) C.int {
	doc, err := opc.Open(C.GoBytes(unsafe.Pointer(data), dataLen))
	if err != nil {
		return -1
	}
	if doc.HasFeature(C.GoString(feature)) {
		return 1
	}
	return 0
}
