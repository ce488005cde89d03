// SPDX-License-Identifier: GPL-3.0-or-later

package jobmgr

type noop struct{}

func (noop) Lock(string) (bool, error) { return true, nil }
func (noop) Unlock(string)             {}
