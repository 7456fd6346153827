package metrics

import (
    "testing"

    "github.com/prometheus/client_golang/prometheus/testutil"
    "github.com/stretchr/testify/assert"
)

func TestObserveSolve(t *testing.T) {
    RegisterDefault()
    RegisterDefault()
    before := testutil.ToFloat64(UnassignableOrders)
    ObserveSolve("ROUTING_SUCCESS", 1.5, 40, 3)
    assert.Equal(t, before+3, testutil.ToFloat64(UnassignableOrders))
    assert.Equal(t, 1, testutil.CollectAndCount(SolveDuration))
}
