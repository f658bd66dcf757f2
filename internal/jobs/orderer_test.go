package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opkgtool/opkg/internal/model"
)

func TestOrderPoolOrdersDependenciesBeforeDependents(t *testing.T) {
	lib := model.NewPkg("devel/lib", "1.0")
	app := model.NewPkg("www/app", "1.0")
	app.AddDep(model.DepEdge{Origin: "devel/lib"})

	bulk := map[string]*model.Pkg{"devel/lib": lib, "www/app": app}
	jobs := newOrderedPkgs()

	require.NoError(t, orderPool(bulk, jobs, &fakeEvents{}))

	assert.Equal(t, []string{"devel/lib", "www/app"}, originsOf(jobs.Iter()))
}

func TestOrderPoolDetectsCycleAndEmitsEvent(t *testing.T) {
	x := model.NewPkg("devel/x", "1.0")
	x.AddDep(model.DepEdge{Origin: "devel/y"})
	y := model.NewPkg("devel/y", "1.0")
	y.AddDep(model.DepEdge{Origin: "devel/x"})

	bulk := map[string]*model.Pkg{"devel/x": x, "devel/y": y}
	events := &fakeEvents{}

	err := orderPool(bulk, newOrderedPkgs(), events)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindFatal))
	assert.Equal(t, 1, events.circularDependency)
}

func TestOrderedPkgsAppendIsIdempotent(t *testing.T) {
	o := newOrderedPkgs()
	p := model.NewPkg("www/app", "1.0")
	o.Append(p)
	o.Append(p)

	assert.Equal(t, 1, o.Len())
	assert.Equal(t, p, o.Find("www/app"))
}

func TestOrderedPkgsIterPreservesInsertionOrder(t *testing.T) {
	o := newOrderedPkgs()
	o.Append(model.NewPkg("c/c", "1.0"))
	o.Append(model.NewPkg("a/a", "1.0"))
	o.Append(model.NewPkg("b/b", "1.0"))

	assert.Equal(t, []string{"c/c", "a/a", "b/b"}, originsOf(o.Iter()))
}
