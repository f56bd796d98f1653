// SPDX-License-Identifier: MPL-2.0

package image

// ExpandIdentifiers returns the names an image is known by: name alone when
// tags is empty, otherwise "name:tag" for each tag in order. The result is
// never empty.
//
//	ExpandIdentifiers("core/redis", nil)                  // [core/redis]
//	ExpandIdentifiers("core/redis", []string{"latest", "4.0.14"})
//	// [core/redis:latest core/redis:4.0.14]
func ExpandIdentifiers(name string, tags []string) []string {
	if len(tags) == 0 {
		return []string{name}
	}
	ids := make([]string, 0, len(tags))
	for _, tag := range tags {
		ids = append(ids, name+":"+tag)
	}
	return ids
}
