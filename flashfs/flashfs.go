// Package flashfs names the contract the protocol core consumes from the
// log-structured flash file system, per spec.md §1: the file system itself
// ("8.3 filenames, compaction... specified only through the contracts they
// consume from the protocol core") is out of scope. The ftp package already
// owns the file catalogue it needs (ftp.Store) built directly on
// hostcap.FlashDevice and takes a hostcap.VolumeResolver directly; this
// package only names a file-system contract. Neither Core nor ftp imports
// it.
package flashfs

// FileSystem is the boundary a real log-structured flash file system would
// satisfy: resolve a filename to the volume holding it, matching
// hostcap.VolumeResolver, plus enumeration for directory-style FTP
// extensions this module does not otherwise need.
type FileSystem interface {
	FileToVolume(name string) uint16
	Files() []string
}

// StaticVolume is a FileSystem with every name pinned to the same volume,
// standing in for the four fixed files spec.md's §6 names (address.can,
// product.inf, equation.btc, patterns.tbl) until a real compacting file
// system is wired in.
type StaticVolume struct {
	Volume uint16
	Names  []string
}

// FileToVolume implements FileSystem.
func (s StaticVolume) FileToVolume(name string) uint16 { return s.Volume }

// Files implements FileSystem.
func (s StaticVolume) Files() []string { return s.Names }
