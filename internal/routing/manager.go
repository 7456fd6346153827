package routing

import "fmt"

// indexManager lays out indices the way routing engines usually do: plain
// nodes first in node order, then one start index per vehicle, then one end
// index per vehicle.
type indexManager struct {
	numNodes    int
	numVehicles int
	starts      []int64
	ends        []int64
	nodeToIndex []int64
	indexToNode []int
}

func newIndexManager(numNodes, numVehicles int, starts, ends []int) (*indexManager, error) {
	if numVehicles <= 0 {
		return nil, fmt.Errorf("routing: need at least one vehicle")
	}
	if len(starts) != numVehicles || len(ends) != numVehicles {
		return nil, fmt.Errorf("routing: %d vehicles but %d starts and %d ends", numVehicles, len(starts), len(ends))
	}
	depot := make([]bool, numNodes)
	for v := 0; v < numVehicles; v++ {
		for _, n := range []int{starts[v], ends[v]} {
			if n < 0 || n >= numNodes {
				return nil, fmt.Errorf("routing: depot node %d out of range [0,%d)", n, numNodes)
			}
			depot[n] = true
		}
	}
	m := &indexManager{
		numNodes:    numNodes,
		numVehicles: numVehicles,
		starts:      make([]int64, numVehicles),
		ends:        make([]int64, numVehicles),
		nodeToIndex: make([]int64, numNodes),
	}
	for i := range m.nodeToIndex {
		m.nodeToIndex[i] = -1
	}
	for n := 0; n < numNodes; n++ {
		if depot[n] {
			continue
		}
		m.nodeToIndex[n] = int64(len(m.indexToNode))
		m.indexToNode = append(m.indexToNode, n)
	}
	add := func(node int) int64 {
		idx := int64(len(m.indexToNode))
		m.indexToNode = append(m.indexToNode, node)
		if m.nodeToIndex[node] < 0 {
			m.nodeToIndex[node] = idx
		}
		return idx
	}
	for v := 0; v < numVehicles; v++ {
		m.starts[v] = add(starts[v])
	}
	for v := 0; v < numVehicles; v++ {
		m.ends[v] = add(ends[v])
	}
	return m, nil
}

func (m *indexManager) NumNodes() int    { return m.numNodes }
func (m *indexManager) NumVehicles() int { return m.numVehicles }
func (m *indexManager) NumIndices() int  { return len(m.indexToNode) }

// NodeToIndex returns -1 for unknown nodes.
func (m *indexManager) NodeToIndex(node int) int64 {
	if node < 0 || node >= m.numNodes {
		return -1
	}
	return m.nodeToIndex[node]
}

// IndexToNode returns -1 for unknown indices.
func (m *indexManager) IndexToNode(index int64) int {
	if index < 0 || index >= int64(len(m.indexToNode)) {
		return -1
	}
	return m.indexToNode[index]
}

func (m *indexManager) StartIndex(vehicle int) int64 { return m.starts[vehicle] }
func (m *indexManager) EndIndex(vehicle int) int64   { return m.ends[vehicle] }

// numVisitIndices is the count of non-depot indices; they come first.
func (m *indexManager) numVisitIndices() int64 { return m.starts[0] }

func (m *indexManager) IsStart(index int64) bool {
	return index >= m.starts[0] && index < m.starts[0]+int64(m.numVehicles)
}

func (m *indexManager) IsEnd(index int64) bool {
	return index >= m.ends[0] && index < m.ends[0]+int64(m.numVehicles)
}

// vehicleOfDepot returns the vehicle owning a start or end index, -1 otherwise.
func (m *indexManager) vehicleOfDepot(index int64) int {
	switch {
	case m.IsStart(index):
		return int(index - m.starts[0])
	case m.IsEnd(index):
		return int(index - m.ends[0])
	}
	return -1
}
