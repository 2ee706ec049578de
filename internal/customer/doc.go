// Package customer は顧客管理サービスを提供する。
// 顧客のCRUDと顧客に紐づく連絡先の管理を担当し、
// タスクサービス向けに顧客名の解決エンドポイントを公開する。
package customer
