// Package profile describes a sensor's lidar packet layout and the rules for
// extracting per-pixel quantities from it.
//
// A Profile is built once from the attribute tree of a sensor metadata
// document (see ParseMetadata and BuildProfile) and is read-only afterwards.
// Every other lidar package reads its dimensions and offsets from here.
package profile
