// Copyright (C) 2024 Darrenzzy, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package keyrow

import "golang.org/x/sys/cpu"

// Hardware feature bits reported by HostCPUInfo.HardwareFlags, matching
// the bitmask collaborator spec.md §6 describes. Callers that don't care
// which feature is present, only whether the fast comparison kernels
// have any wide-vector support at all, can just test FlagsAny.
const (
	FlagSSE41 uint64 = 1 << iota
	FlagAVX2
	FlagAVX512
)

// FlagsAny is the set of bits HostCPUInfo ever sets; useful as a mask
// when deciding whether any wide-vector path is available at all.
const FlagsAny = FlagSSE41 | FlagAVX2 | FlagAVX512

// HostCPUInfo reports the running process's actual hardware features via
// golang.org/x/sys/cpu.
type HostCPUInfo struct{}

// HardwareFlags implements the CPUInfo collaborator interface.
func (HostCPUInfo) HardwareFlags() uint64 {
	var f uint64
	if cpu.X86.HasSSE41 {
		f |= FlagSSE41
	}
	if cpu.X86.HasAVX2 {
		f |= FlagAVX2
	}
	if cpu.X86.HasAVX512F {
		f |= FlagAVX512
	}
	return f
}

// ProbeWidth picks the chunk width of the compare kernel from the widest
// vector width hardwareFlags reports: RowsEqual uses it as its initial
// rejection-test chunk size, and it sizes RowTable's tail padding, so a
// wide-chunk compare never reads past the allocation. (HashRow picks its
// kernel from hardwareFlags directly, not from this width.) Hosts
// reporting no flags get the scalar width of 8.
func ProbeWidth(hardwareFlags uint64) int {
	switch {
	case hardwareFlags&FlagAVX512 != 0:
		return 64
	case hardwareFlags&FlagAVX2 != 0:
		return 32
	case hardwareFlags&FlagSSE41 != 0:
		return 16
	default:
		return 8
	}
}
