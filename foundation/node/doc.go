/*
Package node owns one ledger, one miner and one peer network and wires them
together. Inbound peer requests are served by the ledger, mined blocks and
admitted transactions are broadcast to the known peers, and blocks arriving
from peers interrupt the miner.

A node started with a seed clones the seed's chain, mempool, consensus
parameters and peer set before it listens. The cloned chain must pass full
verification or the node keeps its own genesis chain.
*/
package node
