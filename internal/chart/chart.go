package chart

import (
	"bufio"
	"context"
	"fmt"
	"grid-trader-go/internal/models"
	"os"
	"os/exec"
)

// Renderer 把活动订单快照写成数据文件，并调用 gnuplot 生成 PNG
type Renderer struct {
	dataPath   string
	outputPath string
	gnuplot    string
}

func NewRenderer(dataPath, outputPath string) *Renderer {
	return &Renderer{dataPath: dataPath, outputPath: outputPath, gnuplot: "gnuplot"}
}

// WriteData 覆盖写入数据文件，每行 "grid price quantity"
func (r *Renderer) WriteData(rows []models.SnapshotRow) error {
	f, err := os.Create(r.dataPath)
	if err != nil {
		return fmt.Errorf("无法创建图表数据文件 %s: %w", r.dataPath, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, row := range rows {
		if _, err := fmt.Fprintf(w, "%v %v %v\n", row.GridLevel, row.Price, row.Quantity); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Render 写入数据文件后调用外部绘图工具
func (r *Renderer) Render(ctx context.Context, rows []models.SnapshotRow) error {
	if err := r.WriteData(rows); err != nil {
		return err
	}
	script := fmt.Sprintf("set terminal png; set output '%s'; plot '%s' using 1:2 with linespoints",
		r.outputPath, r.dataPath)
	out, err := exec.CommandContext(ctx, r.gnuplot, "-e", script).CombinedOutput()
	if err != nil {
		return fmt.Errorf("gnuplot 执行失败: %w: %s", err, out)
	}
	return nil
}
