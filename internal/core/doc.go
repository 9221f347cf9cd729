// Package core runs spreadsheet-to-MARC conversions for the web server and
// the command line tool.
//
// It sits between the transports and the conversion engine: [Service]
// validates an upload, opens the workbook, runs the marc package over the
// active sheet, renders the result into memory and records the attempt in
// a history store. It has no knowledge of HTTP.
//
// # Concurrency
//
// Each conversion is synchronous and self-contained. A [ConversionLimiter]
// bounds how many run at once; [Service.Drain] waits for them during
// shutdown.
//
// # Error Handling
//
// Input problems are reported with sentinel errors ([ErrNoFile],
// [ErrBadExtension], [ErrUnreadableWorkbook], marc.ErrNoDataRows) and
// render failures with [ErrSerialization]. [MapError] turns any error into
// a [UserMessage] with a support code:
//
//   - FILE001-FILE004: upload and workbook problems
//   - CONV001-CONV002: conversion problems
//   - UPL001-UPL003: busy, cancelled and timed out requests
//   - RATE001: rate limiting
package core
