// Package httpclient はサービス間のHTTP通信を行うクライアントを提供する。
//
// 各サービスが他のサービスのAPIを呼び出す際に使用する。
// Event Storeへのイベント送信、表示名や顧客名の参照解決など、
// サービス間の通信パターンを統一する。
package httpclient
