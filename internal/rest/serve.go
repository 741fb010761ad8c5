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
	"net/http"
	"path/filepath"
	"strings"
	"github.com/gin-gonic/gin"

	"github.com/mlnoga/rawlight/internal/compute"
	"github.com/mlnoga/rawlight/internal/pipeline"
	"github.com/mlnoga/rawlight/internal/rawio"
)

func Serve() {
	r := gin.Default()
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET ("/ping",    getPing)
			v1.POST("/develop", postDevelop)
		}
	}
	r.Run() // listen and serve on 0.0.0.0:8080
}

func getPing(c *gin.Context) {
	c.JSON(200, gin.H{
		"message": "pong",
	})
}

type postDevelopArgs struct {
	Input      string                       `json:"input"`
	Output     string                       `json:"output"`
	Preview    string                       `json:"preview"`
	PreviewDim int                          `json:"previewDim"`
	Params     *pipeline.DevelopParameters  `json:"params"`
}

func postDevelop(c *gin.Context) {
	var args postDevelopArgs
	if err:=c.ShouldBind(&args); err!=nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error() } )
		return
	}
	if args.Output=="" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing output path"})
		return
	}
	for _, p:=range []string{args.Input, args.Output, args.Preview} {
		if p!="" && !isPathAllowed(p) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "path outside working tree: "+p})
			return
		}
	}
	params:=args.Params
	if params==nil { params=pipeline.NewDevelopParameters() }
	if err:=params.Validate(); err!=nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error() } )
		return
	}

	raw, err:=rawio.ReadPGM16FromFile(args.Input)
	if err!=nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error() } )
		return
	}

	ctx:=compute.NewContext(c.Writer)
	out, err:=pipeline.Develop(ctx, raw, params)
	if err!=nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error() } )
		return
	}

	if err:=rawio.WriteTIFF16ToFile(args.Output, out); err!=nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error() } )
		return
	}
	if args.Preview!="" {
		dim:=args.PreviewDim
		if dim<=0 { dim=512 }
		if err:=rawio.WritePreviewToFile(args.Preview, out, dim); err!=nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error() } )
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"output":  args.Output,
		"preview": args.Preview,
		"width":   out.Width,
		"height":  out.Height,
	})
}

// Serving runs inside the working directory, optionally chrooted via
// MakeSandbox; request paths must not escape it either way
func isPathAllowed(p string) bool {
	if filepath.IsAbs(p) { return false }
	clean:=filepath.ToSlash(filepath.Clean(p))
	return clean!=".." && !strings.HasPrefix(clean, "../")
}
