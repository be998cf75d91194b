//go:build windows

package vault

import (
	"os"

	"golang.org/x/sys/windows"
)

// ownerOnlySDDL grants full control to the file owner and SYSTEM and blocks
// inherited entries.
const ownerOnlySDDL = "D:P(A;;FA;;;OW)(A;;FA;;;SY)"

// restrictFile replaces the DACL of f with an owner-only one.
func restrictFile(f *os.File) error {
	sd, err := windows.SecurityDescriptorFromString(ownerOnlySDDL)
	if err != nil {
		return err
	}
	dacl, _, err := sd.DACL()
	if err != nil {
		return err
	}
	return windows.SetNamedSecurityInfo(
		f.Name(),
		windows.SE_FILE_OBJECT,
		windows.DACL_SECURITY_INFORMATION|windows.PROTECTED_DACL_SECURITY_INFORMATION,
		nil, nil, dacl, nil,
	)
}

// DisableCoreDumps is a no-op on Windows.
func DisableCoreDumps() error {
	return nil
}
