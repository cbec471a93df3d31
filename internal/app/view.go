package app

import (
	"fmt"

	"datachat-cli/internal/apperr"
	"datachat-cli/internal/chart"
	"datachat-cli/internal/model"
)

// ToggleSQL 切换某条回答的 SQL 显示，返回切换后是否可见
func (c *Controller) ToggleSQL(id int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg, err := c.findLocked(id)
	if err != nil {
		return false, err
	}
	if msg.SQLQuery == nil {
		return false, apperr.Validation("message", fmt.Sprintf("message %d has no SQL query", id))
	}
	ev := &sqlToggled{messageID: id}
	c.dispatch(ev)
	return ev.visible, nil
}

// ToggleChart 切换图表显示，第一次显示时生成图表
func (c *Controller) ToggleChart(id int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg, err := c.findLocked(id)
	if err != nil {
		return false, err
	}
	if _, ok := c.st.view.Charts[id]; !ok {
		spec := buildChart(msg)
		if spec == nil {
			return false, apperr.Validation("chart", "no data to chart")
		}
		c.dispatch(&chartGenerated{messageID: id, spec: spec})
	}
	ev := &chartToggled{messageID: id}
	c.dispatch(ev)
	return ev.visible, nil
}

// GenerateChart 生成（或重新生成）图表并缓存
func (c *Controller) GenerateChart(id int64) (*chart.Spec, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg, err := c.findLocked(id)
	if err != nil {
		return nil, err
	}
	spec := buildChart(msg)
	if spec == nil {
		return nil, apperr.Validation("chart", "no data to chart")
	}
	c.dispatch(&chartGenerated{messageID: id, spec: spec})
	return spec, nil
}

// NextPage 表格下一页，已是最后一页时不变
func (c *Controller) NextPage(id int64) (int, error) {
	return c.turnPage(id, 1)
}

// PrevPage 表格上一页，已是第一页时不变
func (c *Controller) PrevPage(id int64) (int, error) {
	return c.turnPage(id, -1)
}

func (c *Controller) turnPage(id int64, delta int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg, err := c.findLocked(id)
	if err != nil {
		return 0, err
	}
	pages := PageCount(msg.Data.Len(), c.st.prefs.rowsPerPage())
	page := c.st.view.Pages[id] + delta
	if page > pages-1 {
		page = pages - 1
	}
	if page < 0 {
		page = 0
	}
	c.dispatch(&pageChanged{messageID: id, page: page})
	return page, nil
}

// PageCount 总页数，至少为 1
func PageCount(rows, perPage int) int {
	if perPage <= 0 {
		perPage = DefaultRowsPerPage
	}
	if rows <= 0 {
		return 1
	}
	return (rows + perPage - 1) / perPage
}

func (c *Controller) findLocked(id int64) (model.Message, error) {
	msg, ok := c.st.log.Find(id)
	if !ok {
		return model.Message{}, apperr.Validation("message", fmt.Sprintf("message %d not found", id))
	}
	return msg, nil
}

// buildChart 优先使用后端给出的图表描述，否则用前两列画柱状图
func buildChart(msg model.Message) *chart.Spec {
	if msg.Visualization != nil {
		if spec, err := chart.Parse(*msg.Visualization); err == nil && spec.Mark != "" {
			if len(spec.Data.Values) == 0 && msg.Data != nil {
				spec.Data.Values = msg.Data.Rows
			}
			return spec
		}
	}
	if spec := chart.Bar(msg.Data); spec != nil {
		return spec
	}
	return chart.Auto(msg.Data)
}
