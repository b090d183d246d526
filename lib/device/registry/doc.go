// Package registry owns the devices of a process. Devices are addressed by a
// minor number and created explicitly, either one by one (Create) or as a
// consecutive range (Setup). Teardown resets all devices concurrently and
// empties the table.
//
// All devices of a registry share one VictoriaMetrics metrics.Set, every series
// carries the minor as its "device" label.
package registry
