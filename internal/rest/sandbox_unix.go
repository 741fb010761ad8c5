// +build linux darwin

// Copyright (C) 2023 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package rest

import (
	"fmt"
	"os"
	"syscall"
)

// Confines the server process before it starts accepting requests:
// optionally chroots into the given directory (requires root), then
// optionally drops to an unprivileged user id. The server resolves
// all request paths relative to the working directory, so the chroot
// directory becomes the only reachable filesystem subtree.
func MakeSandbox(chroot string, setuid int) error {
	if chroot!="" {
		if err:=syscall.Chroot(chroot); err!=nil {
			return fmt.Errorf("chroot %q: %w", chroot, err)
		}
		if err:=os.Chdir("/"); err!=nil {
			return fmt.Errorf("chdir into chroot %q: %w", chroot, err)
		}
	}
	if setuid>=0 {
		if err:=syscall.Setuid(setuid); err!=nil {
			return fmt.Errorf("setuid %d from %d/%d: %w", setuid, syscall.Getuid(), syscall.Geteuid(), err)
		}
	}
	return nil
}
