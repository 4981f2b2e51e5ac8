package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/robalyx/sentinel/internal/escalation"
	"github.com/robalyx/sentinel/internal/risk"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ChartFileName is the attachment name of the prediction history chart.
const ChartFileName = "risk_history.png"

const (
	recentPredictions = 5

	chartWidth      = 800
	chartHeight     = 320
	seriesLineWidth = 3.0
	seriesDotWidth  = 4.0
	gridLineWidth   = 1.0
	axisFontSize    = 10.0
)

// Profile renders a user's risk profile. The history chart is attached when
// the profile has enough successful predictions to plot.
func Profile(userName string, profile *risk.Profile, decision escalation.Decision) discord.MessageCreate {
	color := ColorBlue
	if decision.Escalate {
		color = ColorRed
	}

	embed := discord.NewEmbedBuilder().
		SetTitle("👤 User Profile: "+userName).
		SetDescription(fmt.Sprintf("User ID: %d", profile.UserID)).
		SetColor(color).
		AddField("📊 Statistics", fmt.Sprintf(
			"**Total Messages:** %d\n**Flagged Messages:** %d\n**Last Updated:** %s",
			profile.TotalMessages, profile.FlaggedMessages, stamp(profile.LastUpdated),
		), true).
		AddField("⚠️ Risk Assessment", fmt.Sprintf(
			"**Current Score:** %s/100\n**Risk Level:** %s\n**Highest Score:** %s",
			score(profile.RiskScore), profile.Level().Title(), score(profile.HighestRiskScore),
		), true)

	if len(profile.PredictionHistory) > 0 {
		var recent strings.Builder
		for i, p := range profile.Recent(recentPredictions) {
			if p.Err != "" {
				fmt.Fprintf(&recent, "%d. error\n", i+1)
				continue
			}
			fmt.Fprintf(&recent, "%d. %s (conf: %s)\n", i+1, percent(p.GroomingProbability), percent(p.Confidence))
		}
		embed.AddField("🔮 Recent Predictions", recent.String(), false)
	}

	if decision.Escalate {
		embed.AddField("🚨 Escalation Status", "**REQUIRES ESCALATION**\n"+decision.Reason, false)
	}

	builder := discord.NewMessageCreateBuilder()

	if buf, err := HistoryChart(profile.PredictionHistory); err == nil && buf != nil {
		embed.SetImage("attachment://" + ChartFileName)
		builder.AddFile(ChartFileName, "", buf)
	}

	return builder.SetEmbeds(embed.Build()).Build()
}

// HistoryChart plots grooming probability and confidence over the prediction
// history. It returns nil when fewer than two predictions succeeded.
func HistoryChart(history []risk.Prediction) (*bytes.Buffer, error) {
	var xValues, probabilities, confidences []float64
	for _, p := range history {
		if p.Err != "" {
			continue
		}
		xValues = append(xValues, float64(len(xValues)+1))
		probabilities = append(probabilities, p.GroomingProbability*100)
		confidences = append(confidences, p.Confidence*100)
	}

	if len(xValues) < 2 {
		return nil, nil
	}

	graph := &chart.Chart{
		Title:      "Prediction History",
		TitleStyle: chart.Style{FontSize: 12.0},
		Width:      chartWidth,
		Height:     chartHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 30, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:  "Message",
			Style: chart.Style{FontSize: axisFontSize},
			ValueFormatter: func(v any) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.0f", f)
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			Name:  "%",
			Style: chart.Style{FontSize: axisFontSize},
			Range: &chart.ContinuousRange{Min: 0, Max: 100},
			GridMajorStyle: chart.Style{
				StrokeColor: chart.ColorAlternateGray,
				StrokeWidth: gridLineWidth,
			},
			ValueFormatter: func(v any) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.0f", f)
				}
				return ""
			},
		},
		Series: []chart.Series{
			historySeries("Grooming probability", xValues, probabilities, chart.ColorRed),
			historySeries("Confidence", xValues, confidences, chart.ColorBlue),
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(graph)}

	buf := new(bytes.Buffer)
	if err := graph.Render(chart.PNG, buf); err != nil {
		return nil, fmt.Errorf("failed to render history chart: %w", err)
	}

	return buf, nil
}

func historySeries(name string, xValues, yValues []float64, color drawing.Color) chart.Series {
	return chart.ContinuousSeries{
		Name:    name,
		XValues: xValues,
		YValues: yValues,
		Style: chart.Style{
			StrokeColor: color,
			StrokeWidth: seriesLineWidth,
			DotColor:    color,
			DotWidth:    seriesDotWidth,
		},
	}
}
