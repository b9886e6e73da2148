// Command diffkit computes electron wavelengths and loads, converts and
// catalogs electron diffraction files.
package main

func main() {
	Execute()
}
