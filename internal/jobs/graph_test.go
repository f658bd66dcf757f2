package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opkgtool/opkg/internal/model"
)

func TestAddDepEdgeRecordsBothSides(t *testing.T) {
	app := model.NewPkg("www/app", "1.0")
	lib := model.NewPkg("devel/lib", "1.0")

	addDepEdge(app, lib, model.DepEdge{Origin: "devel/lib", Name: "lib", Version: "2.0"})

	require.Contains(t, app.Deps, "devel/lib")
	assert.Equal(t, "lib", app.Deps["devel/lib"].Name)
	assert.Contains(t, lib.Rdeps, "www/app")
}

func TestRemoveOriginFromGraphKeepsDepOrderConsistent(t *testing.T) {
	app := model.NewPkg("www/app", "1.0")
	app.AddDep(model.DepEdge{Origin: "devel/lib"})
	app.AddDep(model.DepEdge{Origin: "devel/other"})
	app.Rdeps["top/consumer"] = model.DepEdge{Origin: "top/consumer"}

	removeOriginFromGraph("devel/lib", map[string]*model.Pkg{"www/app": app})

	assert.NotContains(t, app.Deps, "devel/lib")
	assert.Equal(t, []string{"devel/other"}, app.DepOrder, "DepOrder must drop the removed origin too")

	removeOriginFromGraph("top/consumer", map[string]*model.Pkg{"www/app": app})
	assert.NotContains(t, app.Rdeps, "top/consumer")
}
