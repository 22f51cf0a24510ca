// Package overlay 在源图片上绘制 OCR 识别出的文本区域，生成预览图。
package overlay

import (
	"bytes"
	"fmt"
	"image/png"

	"lingo-fusion/app/model"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
)

// Render 将识别区域画在源图片上，返回 PNG 数据
func Render(sourcePath string, regions []model.TextRegion) ([]byte, error) {
	img, err := imaging.Open(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("打开源图片失败: %w", err)
	}

	dc := gg.NewContextForImage(img)

	for _, region := range regions {
		// 区域边框，置信度越低颜色越偏红
		dc.SetRGBA(1, region.Confidence, 0, 0.9)
		dc.SetLineWidth(2)
		dc.DrawRectangle(region.X, region.Y, region.Width, region.Height)
		dc.Stroke()

		// 区域上方标注识别文本
		label := fmt.Sprintf("%s (%.2f)", region.Text, region.Confidence)
		dc.SetRGBA(1, 1, 1, 0.9)
		dc.DrawStringAnchored(label, region.X, region.Y-4, 0, 0)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("编码预览图失败: %w", err)
	}
	return buf.Bytes(), nil
}
