// Package report はレポートサービスを提供する。
// Event Storeをポーリングしてタスク関連イベントをRead Modelに投影し、
// ステータス別のタスク集計と最近の活動フィードを公開する。
package report
