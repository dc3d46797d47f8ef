/*
 * Copyright (c) 2019 Yawning Angel <yawning at schwanenlied dot me>
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package meek

import "github.com/obfsmeek/meekclient/transport"

// ProtectFunc is invoked on every outbound socket before connect, so a host
// VPN/tun integration can exclude the connection from its own route.
type ProtectFunc = transport.ProtectFunc

// ResolveFunc resolves a hostname to addresses outside of the tunnel. A nil
// ResolveFunc falls back to the Go resolver (still routed through
// ProtectFunc).
type ResolveFunc = transport.ResolveFunc
