package network

import (
	"net"

	"github.com/jcuga/go-upnp"
)

// mapPort asks the local router to forward the listener port to this node.
// Failure is logged and the node keeps serving on the local address.
func (n *Network) mapPort(addr net.Addr) {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return
	}

	n.evHandler("network: upnp: discovering router")

	d, err := upnp.Discover()
	if err != nil {
		n.evHandler("network: upnp: discovery failed: %s", err)
		return
	}

	externalIP, err := d.ExternalIP()
	if err != nil {
		n.evHandler("network: upnp: external ip: %s", err)
		return
	}

	if err := d.Forward(uint16(tcp.Port), "powchain peer listener", "TCP"); err != nil {
		n.evHandler("network: upnp: forward port[%d]: %s", tcp.Port, err)
		return
	}

	n.evHandler("network: upnp: forwarded: external[%s:%d]", externalIP, tcp.Port)
}
