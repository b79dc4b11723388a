// Package parse decodes lidar UDP datagrams into column records.
//
// A datagram is an opaque packet header, columns_per_packet column blocks and
// an opaque packet footer. Each column block starts with a column header:
//
//	offset  size  field
//	0       8     timestamp (ns, little-endian)
//	8       2     measurement id
//	10      2     status (non-legacy profiles)
//
// followed by pixels_per_column channel blocks. The LEGACY profile uses a
// 16-byte header and carries its status word in a 4-byte column footer.
//
// Parsing never copies channel data: a ColumnRecord holds a view into the
// datagram buffer and is only valid until that buffer is reused.
package parse
