package opc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	localHeaderSignature  uint32 = 0x04034b50
	eocdSignature         uint32 = 0x06054b50
	zip64LocatorSignature uint32 = 0x07064b50
	zip64EOCDSignature    uint32 = 0x06064b50

	eocdLen         = 22
	zip64LocatorLen = 20
	zip64EOCDLen    = 56
	maxCommentLen   = 0xFFFF
)

// oleSignature starts OLE Compound Files: legacy binary Office documents
// and password-encrypted OOXML packages both use this container.
var oleSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// endOfCentralDir is the archive trailer as declared by the file. Values
// are what the file claims, not what the zip parser ends up using.
type endOfCentralDir struct {
	Offset       int64 // position of the EOCD record in the file
	TotalEntries uint64
	CDSize       uint64
	CDOffset     uint64
	CommentLen   uint16
	Zip64        bool
}

// readEndOfCentralDir locates and decodes the trailer. ok is false when no
// plausible record exists; the zip parser then reports the failure.
func readEndOfCentralDir(data []byte) (eocd endOfCentralDir, ok bool) {
	if len(data) < eocdLen {
		return eocd, false
	}
	lo := len(data) - eocdLen - maxCommentLen
	if lo < 0 {
		lo = 0
	}
	for i := len(data) - eocdLen; i >= lo; i-- {
		if binary.LittleEndian.Uint32(data[i:i+4]) != eocdSignature {
			continue
		}
		rec := data[i : i+eocdLen]
		commentLen := binary.LittleEndian.Uint16(rec[20:22])
		if i+eocdLen+int(commentLen) > len(data) {
			continue
		}
		eocd = endOfCentralDir{
			Offset:       int64(i),
			TotalEntries: uint64(binary.LittleEndian.Uint16(rec[10:12])),
			CDSize:       uint64(binary.LittleEndian.Uint32(rec[12:16])),
			CDOffset:     uint64(binary.LittleEndian.Uint32(rec[16:20])),
			CommentLen:   commentLen,
		}
		if eocd.TotalEntries == 0xFFFF || eocd.CDSize == 0xFFFFFFFF || eocd.CDOffset == 0xFFFFFFFF {
			readZip64EndOfCentralDir(data, &eocd)
		}
		return eocd, true
	}
	return eocd, false
}

func readZip64EndOfCentralDir(data []byte, eocd *endOfCentralDir) {
	loc := eocd.Offset - zip64LocatorLen
	if loc < 0 || binary.LittleEndian.Uint32(data[loc:loc+4]) != zip64LocatorSignature {
		return
	}
	recOff := binary.LittleEndian.Uint64(data[loc+8 : loc+16])
	if recOff > uint64(len(data)) || uint64(len(data))-recOff < zip64EOCDLen {
		return
	}
	rec := data[recOff : recOff+zip64EOCDLen]
	if binary.LittleEndian.Uint32(rec[0:4]) != zip64EOCDSignature {
		return
	}
	eocd.Zip64 = true
	eocd.TotalEntries = binary.LittleEndian.Uint64(rec[32:40])
	eocd.CDSize = binary.LittleEndian.Uint64(rec[40:48])
	eocd.CDOffset = binary.LittleEndian.Uint64(rec[48:56])
}

// containerInfo summarises the raw trailer inspection.
type containerInfo struct {
	eocd          endOfCentralDir
	hasEOCD       bool
	prependedSize int64 // bytes between file start and the declared archive start
	leadingJunk   bool  // the file does not start with a local file header
}

// inspectContainer rejects inputs that are recognisably not a zip package
// and measures data hidden in front of the archive.
func inspectContainer(data []byte) (containerInfo, error) {
	var info containerInfo
	if bytes.HasPrefix(data, oleSignature) {
		return info, fmt.Errorf("%w: OLE compound file (encrypted package or legacy binary document)", ErrInvalidArchive)
	}
	info.eocd, info.hasEOCD = readEndOfCentralDir(data)
	if !info.hasEOCD {
		return info, nil
	}
	if info.eocd.TotalEntries > 0 && len(data) >= 4 {
		info.leadingJunk = binary.LittleEndian.Uint32(data[0:4]) != localHeaderSignature
	}
	if info.eocd.Zip64 {
		return info, nil
	}
	// The central directory should end exactly where the trailer starts.
	// Any gap shifts every offset: bytes were prepended to the archive.
	cdStart := info.eocd.Offset - int64(info.eocd.CDSize)
	if cdStart >= 0 && uint64(cdStart) > info.eocd.CDOffset {
		info.prependedSize = cdStart - int64(info.eocd.CDOffset)
	}
	return info, nil
}

// reportMagic starts every report written by WriteReport.
var reportMagic = [4]byte{'O', 'P', 'C', 'R'}

const reportHeaderSize = 8

type reportHeader struct {
	Magic       [4]byte
	Version     uint16
	Format      Format
	Compression Compression
}

func readReportHeader(r io.Reader) (reportHeader, error) {
	var buf [reportHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return reportHeader{}, fmt.Errorf("%w: header: %v", ErrInvalidReport, err)
	}
	var h reportHeader
	copy(h.Magic[:], buf[0:4])
	h.Version = binary.LittleEndian.Uint16(buf[4:6])
	h.Format = Format(buf[6])
	h.Compression = Compression(buf[7])
	return h, nil
}

func writeReportHeader(w io.Writer, h reportHeader) error {
	var buf [reportHeaderSize]byte
	copy(buf[0:4], h.Magic[:])
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	buf[6] = byte(h.Format)
	buf[7] = byte(h.Compression)
	_, err := w.Write(buf[:])
	return err
}
