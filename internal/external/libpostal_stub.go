//go:build !libpostal

package external

// LibpostalAvailable the binary was built with the libpostal tag
const LibpostalAvailable = false

func parseWithLibpostal(string) (ParsedAddress, bool) {
	return ParsedAddress{}, false
}
